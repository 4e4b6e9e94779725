// Package image holds image references and the on-disk layout of a build.
//
// A [Bundle] is the durable artifact of a build: a rootfs directory plus the
// image configuration (environment, exposed ports, command, entrypoint,
// working directory) that the launcher reads when starting a container.
//
//	<staging>/<build-id>/
//	    rootfs/
//	    config.json
package image
