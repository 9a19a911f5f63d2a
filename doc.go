// SPDX-License-Identifier: MIT

// Package dagrator is a schema migration engine whose migrations form a
// directed acyclic graph instead of a numbered sequence. Each migration
// names the migrations it depends on; dagrator works out which ones to apply
// or revert, and in what order, to bring a store to the state you ask for.
//
// The engine knows nothing about any particular database. A store plugs in
// through the Adapter interface; the sqladapter package provides one for
// PostgreSQL and SQLite, and the sqlfile package loads migrations from
// *.sql files. The dagrator command in cmd/dagrator wraps both.
//
// # Install
//
//	go get github.com/bcomnes/dagrator@latest
//
// # Quick start
//
//	import (
//	    "context"
//	    "database/sql"
//	    "os"
//
//	    _ "github.com/jackc/pgx/v5/stdlib"
//
//	    "github.com/bcomnes/dagrator"
//	    "github.com/bcomnes/dagrator/sqladapter"
//	    "github.com/bcomnes/dagrator/sqlfile"
//	)
//
//	func main() {
//	    db, _ := sql.Open("pgx", os.Getenv("DATABASE_URL"))
//	    adapter, _ := sqladapter.New(sqladapter.Config{Driver: "pg"}, db)
//	    _ = adapter.EnsureTable(ctx)
//
//	    migs, _ := sqlfile.Load(sqlfile.Config{MigrationPattern: "migrations/*.sql"})
//	    graph := dagrator.NewGraph[sqladapter.Migration]()
//	    for _, m := range migs {
//	        _ = graph.Register(m)
//	    }
//
//	    m := dagrator.NewMigrator[sqladapter.Migration](graph, adapter)
//	    res, err := m.ApplyTo(ctx, dagrator.All)
//	}
//
// # Graph
//
// Register migrations into a Graph in any order. Register rejects duplicate
// IDs and any dependency that would close a cycle, reporting the cycle path.
// Dependencies on migrations that are never registered are reported by
// Validate, which every planning call runs first. Once a Migrator has planned
// against a graph, the graph is sealed and further registration fails.
//
// Independent migrations are always ordered by ID (byte order, which is the
// order of the canonical string form), so plans are reproducible.
//
// # Targets
//
//	dagrator.All          apply everything / revert everything
//	dagrator.To(id)       apply id and its ancestors / revert what depends on id
//	dagrator.Before(id)   apply only id's ancestors / revert id and its dependents
//
// # Execution
//
// ApplyTo and RevertTo read the applied set from the adapter, compute the
// minimal plan and run it one migration at a time. The first failure stops
// the run; the returned Result tells which steps completed, which step failed
// and which never ran. Re-running the same call later only runs what is still
// missing.
//
// Errors are typed: DuplicateIDError, UnresolvedDependencyError, CycleError,
// UnknownMigrationError, AppliedUnregisteredError, AdapterError and
// BookkeepingError. A BookkeepingError means a migration ran but recording it
// failed; unless its RolledBack field is set, the store and its history
// disagree and an operator has to reconcile them.
//
// Runs against the same store must not overlap. Adapters implementing Locker
// take a store-wide lock for each run; otherwise serialize calls yourself.
package dagrator
