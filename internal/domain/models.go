package domain

// PersistentModels lists the tables migrated at startup.
func PersistentModels() []any {
	return []any{&Order{}, &OrderItem{}, &AppSettings{}}
}
