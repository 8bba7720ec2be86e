// Package postgres contains the PostgreSQL implementations of the
// store interfaces. Stores accept either a live connection or a
// transaction via store.DBTX; the WithTx pattern lets the service layer
// compose multiple store operations inside one transaction.
package postgres
