// Package sqlite persists prompts, schedulers and memories in a SQLite
// database using the pure Go modernc.org/sqlite driver.
//
//	db, err := sqlite.Open("cmdmesh.db")
//	if err != nil { ... }
//	defer db.Close()
//
//	svc := schedule.NewService(db.Schedulers(), db.Prompts(), launcher)
package sqlite
