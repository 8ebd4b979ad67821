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

// Package config reads the daemon configuration file and overlays
// environment variables on top of it.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()
	v.SetEnvPrefix("ooxmld")                           // will be uppercased automatically
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // so OOXMLD_HTTP_ADDRESS overrides Get("http.address")
	v.AutomaticEnv()
}

// SetFile sets the configuration file to read.
func SetFile(fn string) {
	v.SetConfigFile(fn)
}

// Read parses the configuration file.
func Read() error {
	return v.ReadInConfig()
}

// reGet walks the map and re-runs vipers Get on every leaf so env
// variables can override values that came from the file.
func reGet(prefix string, kv *map[string]interface{}) {
	for k, val := range *kv {
		if c, ok := val.(map[string]interface{}); ok {
			reGet(prefix+"."+k, &c)
		} else {
			(*kv)[k] = v.Get(prefix + "." + k)
		}
	}
}

// Get returns the subtree under the given key.
func Get(key string) map[string]interface{} {
	kv := v.GetStringMap(key)
	// GetStringMap does not apply the automatic env mapping on nested keys
	reGet(key, &kv)
	return kv
}

// Dump returns all settings.
func Dump() map[string]interface{} {
	return v.AllSettings()
}
