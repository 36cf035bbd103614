// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"strconv"

	"github.com/racingplus/client/internal/domain"
)

// FakeWorkerPackage is the import path of the fake worker program.
const FakeWorkerPackage = "github.com/racingplus/client/test/fixtures/fakeworker"

// Fake worker modes.
const (
	// ModeEcho sends every message back and exits on "exit".
	ModeEcho = "echo"
	// ModeBurst writes a numbered sequence of messages and exits cleanly.
	ModeBurst = "burst"
	// ModeFail writes an error frame and exits with code 2.
	ModeFail = "fail"
)

// WorkerSpec returns a spawn spec running the fake worker binary in mode.
func WorkerSpec(kind domain.WorkerKind, binary, mode string) domain.WorkerSpec {
	return domain.WorkerSpec{Kind: kind, Command: binary, Args: []string{mode}}
}

// BurstSpec returns a spec that writes count messages and exits.
func BurstSpec(kind domain.WorkerKind, binary string, count int) domain.WorkerSpec {
	spec := WorkerSpec(kind, binary, ModeBurst)
	spec.Args = append(spec.Args, strconv.Itoa(count))
	return spec
}
