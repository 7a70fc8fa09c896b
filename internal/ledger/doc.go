// Package ledger defines the data model and ports used to talk to the remote
// Stellar ledger: the read API, submission, the transaction codec and the
// testnet faucet. Concrete transports live in sub-packages.
package ledger
