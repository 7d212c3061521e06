//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

// Build compiles smdconv into bin/.
func Build() error {
	return sh.RunV("go", "build", "-o", "bin/smdconv", "./cmd/smdconv")
}

// Install puts smdconv into GOPATH/bin.
func Install() error {
	return sh.RunV("go", "install", "./cmd/smdconv")
}

func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs vet and then all tests.
func Test() error {
	mg.Deps(Vet)
	args := []string{"test"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	return sh.RunV("go", append(args, "./...")...)
}

func Clean() error {
	return sh.Rm("bin")
}
