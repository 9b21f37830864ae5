// Package workers computes worker and connection pool sizes that
// respect container CPU limits. Text extraction itself runs
// sequentially; this sizing applies to I/O concerns such as the
// store's connection pool.
package workers
