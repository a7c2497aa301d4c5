// Package testsupport holds helpers shared by package tests: temp-dir backed
// configs, stub binaries on PATH, scripted disc collaborators and file fixtures.
package testsupport
