package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ha1tch/pantrycache/pkg/catalog"
	"github.com/ha1tch/pantrycache/pkg/idcache"
	"github.com/ha1tch/pantrycache/pkg/store"
)

// pantry-migrate copies every category/description/instance row from one
// store.Store backend to another, e.g. from a JSON file store to SQLite
// ahead of a production cutover. It goes through the narrow store.Store
// contract only (Query/Insert), the same boundary the facade itself is
// built on, so it works against any registered backend without caring
// which one it is.
//
// Because Insert always allocates a fresh id (the store interface has no
// "insert with this id" escape hatch), ids are not preserved across the
// migration. Each kind is copied parent-first so a child row's foreign
// key can be remapped from its old parent id to the new one.
func main() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: pantry-migrate <source-type> <source-path> <target-type> <target-path>")
		fmt.Println("Example: pantry-migrate jsonfile ./data sqlite ./pantrycache.db")
		os.Exit(1)
	}

	sourceType, sourcePath := os.Args[1], os.Args[2]
	targetType, targetPath := os.Args[3], os.Args[4]

	if err := migrate(sourceType, sourcePath, targetType, targetPath); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Migration completed successfully!")
}

func migrate(sourceType, sourcePath, targetType, targetPath string) error {
	ctx := context.Background()

	sourceStore, err := openNamedStore(sourceType, sourcePath)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer sourceStore.Close()

	targetStore, err := openNamedStore(targetType, targetPath)
	if err != nil {
		return fmt.Errorf("opening target: %w", err)
	}
	defer targetStore.Close()

	fmt.Println("Migrating categories...")
	categoryIDs, err := copyRootKind(ctx, sourceStore, targetStore, catalog.KindCategory)
	if err != nil {
		return fmt.Errorf("migrating categories: %w", err)
	}
	fmt.Printf("  Migrated %d categories\n", len(categoryIDs))

	fmt.Println("Migrating descriptions...")
	descIDs, err := copyChildKind(ctx, sourceStore, targetStore, catalog.KindDescription, categoryIDs)
	if err != nil {
		return fmt.Errorf("migrating descriptions: %w", err)
	}
	fmt.Printf("  Migrated %d descriptions\n", len(descIDs))

	fmt.Println("Migrating instances...")
	instanceIDs, err := copyChildKind(ctx, sourceStore, targetStore, catalog.KindInstance, descIDs)
	if err != nil {
		return fmt.Errorf("migrating instances: %w", err)
	}
	fmt.Printf("  Migrated %d instances\n", len(instanceIDs))

	fmt.Println()
	fmt.Printf("Migration summary: %d categories, %d descriptions, %d instances\n",
		len(categoryIDs), len(descIDs), len(instanceIDs))
	return nil
}

func openNamedStore(kind, path string) (store.Store, error) {
	switch kind {
	case "sqlite":
		return store.NewStore("sqlite", map[string]interface{}{"db_path": path})
	case "jsonfile":
		return store.NewStore("jsonfile", map[string]interface{}{"base_dir": path})
	case "redis":
		return store.NewStore("redis", map[string]interface{}{"host": path})
	default:
		return nil, fmt.Errorf("unknown store type %q", kind)
	}
}

// copyRootKind copies every row of a parentless kind and returns a map
// from its old id to the id it was assigned in the target store.
func copyRootKind(ctx context.Context, src, dst store.Store, kind string) (map[idcache.ID]idcache.ID, error) {
	rows, err := src.Query(ctx, kind, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}

	idMap := make(map[idcache.ID]idcache.ID, len(rows))
	for _, row := range rows {
		newID, err := dst.Insert(ctx, kind, store.Row{Kind: kind, Data: row.Data})
		if err != nil {
			return nil, fmt.Errorf("inserting %s/%d: %w", kind, row.ID, err)
		}
		idMap[row.ID] = newID
	}
	return idMap, nil
}

// copyChildKind copies every row of a kind whose fk_id is remapped
// through parentIDMap, skipping (and reporting) any row whose parent was
// not itself migrated.
func copyChildKind(ctx context.Context, src, dst store.Store, kind string, parentIDMap map[idcache.ID]idcache.ID) (map[idcache.ID]idcache.ID, error) {
	rows, err := src.Query(ctx, kind, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}

	idMap := make(map[idcache.ID]idcache.ID, len(rows))
	for _, row := range rows {
		newParentID, ok := parentIDMap[row.FKID]
		if !ok {
			fmt.Printf("  Warning: %s/%d references unmigrated parent %d, skipping\n", kind, row.ID, row.FKID)
			continue
		}

		newID, err := dst.Insert(ctx, kind, store.Row{
			Kind:  kind,
			FKID:  newParentID,
			HasFK: true,
			Data:  row.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("inserting %s/%d: %w", kind, row.ID, err)
		}
		idMap[row.ID] = newID
	}
	return idMap, nil
}
