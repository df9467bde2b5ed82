// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import "embed"

//go:embed migrations/sqlite3/*.sql
var migrationFiles embed.FS
