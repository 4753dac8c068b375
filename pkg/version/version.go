// Copyright (C) 2025 SAGE-X Project
//
// This file is part of agenthub-go.
//
// agenthub-go is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// agenthub-go is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with agenthub-go.  If not, see <https://www.gnu.org/licenses/>.

// Package version reports build and dependency versions.
package version

import (
	"runtime"
	"runtime/debug"

	agenthub "github.com/agenthub-iot/agenthub-go"
)

const gethModule = "github.com/ethereum/go-ethereum"

// Info contains detailed version information
type Info struct {
	Version               string `json:"version"`
	PaymentMessageVersion int    `json:"paymentMessageVersion"`
	A2AProtocolVersion    string `json:"a2aProtocolVersion"`
	SAGEVersion           string `json:"sageVersion"`
	GethVersion           string `json:"gethVersion,omitempty"`
	GoVersion             string `json:"goVersion"`
}

// Get returns version information for the running binary.
func Get() Info {
	info := Info{
		Version:               agenthub.Version,
		PaymentMessageVersion: agenthub.PaymentMessageVersion,
		A2AProtocolVersion:    agenthub.A2AProtocolVersion,
		SAGEVersion:           agenthub.SAGEVersion,
		GoVersion:             runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GethVersion = depVersion(bi, gethModule)
	}
	return info
}

// UserAgent is the User-Agent sent by the relay and gateway clients.
func UserAgent() string {
	return "agenthub-go/" + agenthub.Version
}

func depVersion(bi *debug.BuildInfo, path string) string {
	for _, dep := range bi.Deps {
		if dep.Path == path {
			if dep.Replace != nil {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return ""
}
