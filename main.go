package main

import (
	"errors"
	"os"
)

// Exit codes. Zero is implicit success; partial means the run finished
// but some entities failed and were reported.
const (
	exitFatal   = 1
	exitPartial = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errEntityErrors) {
			// Details were already printed by the command.
			os.Exit(exitPartial)
		}

		exitOnError(err)
	}
}
