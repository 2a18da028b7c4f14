// Package main prints the bcrypt hash of a password read from stdin. It is
// used when seeding console users directly into the users table.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/community-hub/community-hub/internal/auth"
)

func main() {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatalf("failed to read password: %v", err)
	}
	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hash)
}
