// SPDX-License-Identifier: MIT

// Package config loads and validates the spotbridge daemon configuration with
// precedence ENV > file > defaults.
package config
