// Package signals feeds usage events into the canon store without ever
// blocking or failing the serving path.
package signals
