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

package metadata

import (
	"github.com/a2aproject/a2a-go/a2a"
)

// ToA2ACard converts the document to an A2A agent card so agents that speak
// A2A can advertise the same identity.
func (d *Document) ToA2ACard() *a2a.AgentCard {
	card := &a2a.AgentCard{
		Name:               d.Name,
		Description:        d.Description,
		URL:                d.Endpoint,
		Version:            d.Version,
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		AdditionalInterfaces: []a2a.AgentInterface{
			{
				Transport: a2a.TransportProtocolJSONRPC,
				URL:       d.Endpoint,
			},
		},
	}
	for _, c := range d.Capabilities {
		skill := a2a.AgentSkill{ID: c, Name: c, Description: c}
		if d.SensorType != "" {
			skill.Tags = []string{d.SensorType}
		}
		card.Skills = append(card.Skills, skill)
	}
	return card
}
