/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build metadata.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current HomeBake release.
// This is set at build time via ldflags:
//
//	-X github.com/toptech5419/homebake/internal/version.Version=X.Y.Z
var Version = "0.1.0"

// Commit is the VCS revision, also set via ldflags.
var Commit = "dev"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
}

func (i Info) String() string {
	return fmt.Sprintf("homebake %s (%s, %s)", i.Version, i.Commit, i.GoVersion)
}
