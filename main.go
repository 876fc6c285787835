package main

import (
	"fmt"
	"os"
	"strings"
)

// the target database can be overridden from the CLI, check it before anything connects
func validateDriver(driver string, supported []string) error {
	if driver == "" {
		return nil
	}
	if !isValidDatabase(driver, supported) {
		return fmt.Errorf("invalid target database type %s, expected one of %s", driver, strings.Join(supported, ", "))
	}
	return nil
}

func isValidDatabase(db string, slice []string) bool {
	for _, v := range slice {
		if strings.EqualFold(v, db) {
			return true
		}
	}
	return false
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
