// taskgate — policy-gated execution of untrusted task scripts.
// A static validator rejects scripts that violate import, structure,
// or call policy; accepted scripts run in a namespace exposing only
// whitelisted primitives.
package main

import "github.com/taskgate/taskgate/internal/cli"

func main() {
	cli.Execute()
}
