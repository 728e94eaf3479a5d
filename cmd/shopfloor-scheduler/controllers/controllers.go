// Copyright 2023 UMH Systems GmbH
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

// Package controllers binds the HTTP surface to the scheduling service. The
// handlers only parse, delegate and translate errors; all rules live in the
// services package.
package controllers

import (
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/services"
)

var service *services.Service

// Init wires the handlers to the service instance. Must be called before the
// router starts serving.
func Init(s *services.Service) {
	service = s
}
