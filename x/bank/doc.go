/*
Package bank keeps the balances of the ledger: the native currency and any
number of tokens, each identified by the address of its mint.

Every balance is stored as a separate record keyed by owner and mint, so
that all balances of an owner can be read with a single prefix query. Vaults
of a multisig hold their funds here like any other account and move them
with a SendMsg executed as part of a vault transaction.
*/
package bank
