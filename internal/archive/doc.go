// Package archive applies tar streams onto a directory tree.
//
// Image layers and COPY/ADD sources both arrive as tar streams. [Extract]
// sniffs the stream for gzip or zstd compression and unpacks it into a
// destination directory, overwriting whatever earlier layers put there.
// Every path is resolved inside the destination with securejoin, so neither
// "../" entries nor symlinks planted by an earlier layer can write outside of
// it.
//
// Whiteout entries (".wh.*") are not interpreted; they are skipped.
package archive
