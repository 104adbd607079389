/*
Package app implements the ABCI application tendermint drives: it decodes
and authenticates transactions, routes their messages to the extension
handlers and keeps the committed state in a merkle store.

Besides the extension state the application maintains a few records of
its own, all under the "_q:" key prefix:

  - the chain id, saved once from the genesis,
  - the recent checkpoints (application hashes) a transaction may refer
    to, and
  - a record for every processed transaction, so that the same signed
    bytes are never applied twice.
*/
package app
