// Package build executes an instruction list against a fresh build
// directory.
//
// Instructions run in order against a single [Context]. FROM pulls a base
// image into a new directory under the staging root and (re)starts the
// context; every other instruction mutates the root filesystem, the
// working directory, the accumulated environment or the persisted image
// config. Instructions that appear before any FROM have no context to act
// on; they are skipped with a warning, or fail the build in strict mode.
//
// Each build owns a directory named by a random UUID, so concurrent builds
// never touch each other's files.
//
//	<staging>/<build-id>/
//	    rootfs/
//	    config.json
//
// RUN commands are delegated to a [Runner]: [HostRunner] executes them on
// the host with the working directory inside the rootfs, [IsolatedRunner]
// executes them inside new namespaces rooted at the rootfs.
//
// Example usage:
//
//	result, err := build.Run(ctx, build.Options{
//	    Instructions: tugfile.Parse(script),
//	    StagingRoot:  cfg.StagingRoot(),
//	    ContextDir:   ".",
//	    Puller:       registry.New(registry.Options{}),
//	})
//	if err != nil {
//	    return err
//	}
package build
