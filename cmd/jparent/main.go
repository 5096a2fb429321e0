// Command jparent sets the parent of every issue in a Jira CSV export to a
// single target issue.
package main

import "os"

func main() {
	// JPARENT_NAME overrides the binary name in help text, for wrapper scripts.
	if name := os.Getenv("JPARENT_NAME"); name != "" {
		rootCmd.Use = name
	}

	if err := rootCmd.Execute(); err != nil {
		exit(1)
	}
}
