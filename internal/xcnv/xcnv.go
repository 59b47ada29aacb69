// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv provides tools to convert recorder session dumps
// to/from LCIO.
package xcnv // import "github.com/go-canfd/fdr/internal/xcnv"
