// Command buildcache is a transparent compiler-invocation cache: it either replays a
// previously cached invocation's outputs from its on-disk store, or runs the wrapped
// tool and records the result for next time.
package main

import (
	"github.com/benoit-pierre/buildcache/cmd"
)

func main() {
	cmd.Execute()
}
