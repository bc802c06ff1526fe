// Package core holds the domain model of the banking data pipeline.
//
// It contains no I/O: loaders, the store, and transports all depend on it,
// never the other way around.
//
// # Entity Definitions
//
// Each entity is described by an [EntityDefinition]: its fields with their
// canonical names and types, an optional drop rule, an optional derive step,
// and a build func producing a typed [Record]. Definitions are collected in a
// [Registry] whose order is the load order, parents before children:
//
//	reg := core.NewRegistry()
//	reg.Register(core.EntityDefinition{
//	    Info: core.EntityInfo{Key: "customers", Label: "Customers"},
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "customer_id", Type: core.FieldText, Key: true},
//	        {Name: "age", Type: core.FieldInteger},
//	    },
//	    Build: buildCustomer,
//	})
//
// # Normalization
//
// [Normalize] runs the shared cleaning skeleton over a [Dataset] and returns
// the typed records plus [Stats]. Rows excluded by a business rule are
// counted by [DropReason]; values that fail coercion become null and are
// counted as coercion nulls. Remaining nulls in text and date fields are
// replaced with [Sentinel].
//
// # Error Handling
//
// [FormatError], [StoreError] and [NotFoundError] carry the failing dataset,
// table or key. [MapError] turns any error into a [UserMessage] with a
// support code.
package core
