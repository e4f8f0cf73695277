// Package core defines the shared language of the leapupsert system.
//
// This package contains:
//   - Catalog entities (SQLType, Column, TableRef, KeyDescriptor)
//   - Stream entities (Record, Document, Outcome)
//   - Bind values (TypedValue)
//   - The error taxonomy (ConnectivityError, SchemaLookupError, ApplicationError, BatchError)
//   - Configuration types (AdapterConfig, TargetConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
