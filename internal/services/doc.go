// Package services implements the business logic layer between the
// HTTP handlers and the storage/processing packages.
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate business rules
//
// The package provides two services:
//
//   - FileService: upload validation, disk persistence and preview
//     extraction for incoming datasets
//   - HealthService: liveness and readiness information for operators
//
// Services return domain errors (ErrUnsupportedType, ErrFileTooLarge,
// ErrUnparsable) that handlers translate to API error responses.
package services
