// Copyright 2018-2023 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

package ooxml

import "github.com/cs3org/ooxmld/pkg/errcode"

// OpStatus is the terminal state of one operation.
type OpStatus string

const (
	StatusQueued    OpStatus = "queued"
	StatusRunning   OpStatus = "running"
	StatusSucceeded OpStatus = "succeeded"
	StatusWarned    OpStatus = "warned"
	StatusFailed    OpStatus = "failed"
)

// OpResult is the per-operation entry of a batch report.
type OpResult struct {
	Index        int            `json:"index"`
	Type         OpType         `json:"type"`
	Status       OpStatus       `json:"status"`
	OK           bool           `json:"ok"`
	NotFound     bool           `json:"notFound,omitempty"`
	Replacements int            `json:"replacements,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
	OverBudget   bool           `json:"overBudget,omitempty"`
	ElapsedMS    int64          `json:"elapsedMs"`
	Error        *errcode.Error `json:"error,omitempty"`
}

// Report summarizes the outcome of one operation batch.
type Report struct {
	TotalOps     int         `json:"totalOps"`
	Results      []*OpResult `json:"results"`
	Replacements int         `json:"replacements"`
	PartsAdded   int         `json:"partsAdded"`
	PartsRemoved int         `json:"partsRemoved"`
	PartsRenamed int         `json:"partsRenamed"`
	Warnings     []string    `json:"warnings,omitempty"`
	ElapsedMS    int64       `json:"elapsedMs"`
}
