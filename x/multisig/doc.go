/*
Package multisig implements threshold governed accounts.

A multisig is created once with a set of members and an approval threshold.
Members create transactions, each getting the next index of the multisig,
and vote on the proposal attached to every transaction. A proposal that
collected enough approvals can be executed once its time lock has passed.

Two kinds of transaction exist. A vault transaction executes an ordered
bundle of messages with one of the multisig vaults as the authority. A
config transaction applies an ordered batch of actions to the multisig
itself and, when executed, makes every pending proposal stale.
*/
package multisig
