package main

import (
	"log"

	"github.com/scomax/contact-validator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
