/*
Package client talks to a quorum ledger on behalf of a multisig member.

Ledger is the narrow view of a node the rest of the package needs. Reads go
through ConfigStore, which never caches. Every state changing call is
signed and delivered by a Broadcaster, which resubmits the same bytes until
the ledger records an outcome or the time budget runs out. Squad combines
both into the multisig workflow: create, propose, vote and execute.
*/
package client
