// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newMetricsMux builds the HTTP mux serving /metrics. This is the ambient
// observability surface described in SPEC_FULL.md §6; it never touches
// the single-threaded master loop's state directly, only the package-
// level Prometheus collectors in lib/metrics.
func newMetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func serveHTTP(addr string, mux *http.ServeMux) error {
	return http.ListenAndServe(addr, mux)
}
