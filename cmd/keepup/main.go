// Command keepup runs the KeepUp API server and talks to it.
//
//	keepup serve              run the HTTP API
//	keepup seed               fill an empty database with demo data
//	keepup login alice        sign in and remember the token
//	keepup feed --scope friends
//	keepup post "ran 5k today"
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
