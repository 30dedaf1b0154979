// Command nvrd runs the recording lifecycle engine: stream lifecycle
// management, detection-gated recording, retention enforcement, and the
// REST API, behind a single cobra CLI.
package main

import "github.com/nvrengine/engine/cmd/nvrd/cmd"

func main() {
	cmd.Execute()
}
