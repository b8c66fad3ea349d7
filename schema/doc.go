// Package schema exports declared tables to the atlas schema model and
// validates them.
//
// ToAtlas converts tables into an atlas schema, Inspect reads the schema of
// a connected database through the atlas driver of its dialect, and
// ValidateDiff reports the breaking changes between the two:
//
//	current, err := schema.Inspect(ctx, db)
//	if err != nil {
//	    return err
//	}
//	desired, err := schema.ToAtlas(db.Dialect(), current.Name, users.Table, cities.Table)
//	if err != nil {
//	    return err
//	}
//	if result := schema.ValidateDiff(current, desired); result.HasErrors() {
//	    return errors.New(result.String())
//	}
//
// Validate checks declared tables before any database is involved: missing
// primary keys, foreign keys to undeclared tables, and features the dialect
// cannot create. Planning and applying migrations is left to atlas.
package schema
