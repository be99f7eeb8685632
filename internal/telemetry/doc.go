// Package telemetry provides OpenTelemetry instrumentation for teachd.
//
// It manages the global TracerProvider and MeterProvider, exporting over
// OTLP (http or grpc). Telemetry failures never crash the application;
// the instance degrades to no-op providers instead.
package telemetry
