package persistence

import (
	"reflect"

	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// tenancyBypassKey lets bootstrap code (migrations, test seeding) opt one
// statement out of the guard: db.Set(TenancyBypass, true).
const TenancyBypass = "tenancy:bypass"

// RegisterTenancyCallbacks installs the tenant guard on every statement that
// touches a tenant-owned table. Tables without a tenant_id column (tenants
// themselves) are exempt. This is the first line of defense; Postgres RLS
// backs it at the database.
func RegisterTenancyCallbacks(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenancy:query", scopeStatement); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenancy:row", scopeStatement); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenancy:update", scopeStatement); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenancy:delete", scopeStatement); err != nil {
		return err
	}
	return db.Callback().Create().Before("gorm:create").Register("tenancy:create", stampCreate)
}

func tenantField(db *gorm.DB) *schema.Field {
	if db.Statement == nil || db.Statement.Schema == nil {
		return nil
	}
	return db.Statement.Schema.LookUpField("TenantID")
}

func bypassed(db *gorm.DB) bool {
	v, ok := db.Get(TenancyBypass)
	return ok && v == true
}

// scopeStatement injects the tenant predicate into reads, updates and deletes
func scopeStatement(db *gorm.DB) {
	if tenantField(db) == nil || bypassed(db) {
		return
	}
	scope, err := tenancy.FromContext(db.Statement.Context)
	if err != nil {
		db.AddError(err)
		return
	}
	if scope.Global {
		// Cross-tenant reads are reserved for the scheduler's enumeration
		// paths, which query tables without tenant ownership.
		db.AddError(tenancy.ErrGlobalScopeForbidden)
		return
	}
	db.Statement.AddClause(tenantWhere(scope.TenantID))
}

func tenantWhere(tenantID uuid.UUID) clause.Where {
	return clause.Where{Exprs: []clause.Expression{
		clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: "tenant_id"},
			Value:  tenantID,
		},
	}}
}

// stampCreate stamps tenant_id on inserts and refuses cross-tenant payloads
func stampCreate(db *gorm.DB) {
	field := tenantField(db)
	if field == nil || bypassed(db) {
		return
	}
	scope, err := tenancy.FromContext(db.Statement.Context)
	if err != nil {
		db.AddError(err)
		return
	}
	if scope.Global {
		db.AddError(tenancy.ErrGlobalScopeForbidden)
		return
	}

	switch db.Statement.ReflectValue.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < db.Statement.ReflectValue.Len(); i++ {
			if err := stampOne(db, field, db.Statement.ReflectValue.Index(i), scope.TenantID); err != nil {
				db.AddError(err)
				return
			}
		}
	case reflect.Struct:
		if err := stampOne(db, field, db.Statement.ReflectValue, scope.TenantID); err != nil {
			db.AddError(err)
		}
	}
}

func stampOne(db *gorm.DB, field *schema.Field, rv reflect.Value, tenantID uuid.UUID) error {
	current, isZero := field.ValueOf(db.Statement.Context, rv)
	if !isZero {
		if id, ok := current.(uuid.UUID); ok && id != tenantID {
			return tenancy.ErrCrossTenant
		}
		return nil
	}
	return field.Set(db.Statement.Context, rv, tenantID)
}
