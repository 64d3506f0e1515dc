package db

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/frankban/quicktest"
)

const twoTableDDL = `
{ DATABASE test_live  delimiter | }

grant dba to "informix";

{ TABLE "informix".customers row size = 429 number of columns = 6 index size = 0 }
{ unload file name = custo00100.unl number of rows = 73 }
create table "informix".customers
  (
    id serial not null,
    first_name varchar(50),
    last_name varchar(50),
    email varchar(100),
    address varchar(200),
    phone varchar(20)
  ) extent size 16 next size 16 lock mode row;

revoke all on "informix".customers from "public" as "informix";

{ TABLE "informix".employees row size = 432 number of columns = 6 index size = 0 }
{ unload file name = emplo00101.unl number of rows = 53 }
create table "informix".employees
  (
    id serial not null,
    customer_id integer,
    name varchar(100),
    email varchar(100),
    address varchar(200),
    phone varchar(20)
  ) extent size 16 next size 16 lock mode row;
`

func TestParseSchema_TwoTables(t *testing.T) {
	c := quicktest.New(t)
	catalog, err := ParseSchema(twoTableDDL)
	c.Assert(err, quicktest.IsNil)
	c.Assert(catalog.Tables(), quicktest.DeepEquals, []string{"customers", "employees"})

	customers := catalog["customers"]
	c.Assert(customers.DataFile, quicktest.Equals, "custo00100.unl")
	c.Assert(customers.FieldNames(), quicktest.DeepEquals,
		[]string{"id", "first_name", "last_name", "email", "address", "phone"})
	c.Assert(customers.HasID, quicktest.IsTrue)
	c.Assert(customers.Columns[0].Nullable, quicktest.IsFalse)
	c.Assert(customers.Columns[3].MaxLength, quicktest.Equals, 100)

	employees := catalog["employees"]
	c.Assert(employees.DataFile, quicktest.Equals, "emplo00101.unl")
	c.Assert(employees.FieldNames(), quicktest.DeepEquals,
		[]string{"id", "customer_id", "name", "email", "address", "phone"})

	idx, ok := employees.FieldIndex("name")
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(idx, quicktest.Equals, 2)
	_, ok = employees.FieldIndex("nonexistent")
	c.Assert(ok, quicktest.IsFalse)
}

func TestParseSchema_ComplexFieldTypes(t *testing.T) {
	c := quicktest.New(t)
	ddl := `
{ TABLE "informix".complex_table row size = 500 number of columns = 8 index size = 0 }
{ unload file name = compl00102.unl number of rows = 100 }
create table "informix".complex_table
  (
    id serial not null,
    decimal_field decimal(10,2),
    date_field date,
    timestamp_field datetime year to fraction(5),
    blob_field blob,
    list_field set(integer not null),
    varying_field varchar(255, 512),
    fixed_field char(10),
    primary key (id) constraint "informix".pk_complex
  ) extent size 16 next size 16 lock mode row;
`
	catalog, err := ParseSchema(ddl)
	c.Assert(err, quicktest.IsNil)
	s := catalog["complex_table"]
	c.Assert(s.FieldNames(), quicktest.DeepEquals, []string{
		"id", "decimal_field", "date_field", "timestamp_field",
		"blob_field", "list_field", "varying_field", "fixed_field",
	})
	c.Assert(s.Columns[3].Type, quicktest.Equals, "datetime")
	c.Assert(s.Columns[6].MaxLength, quicktest.Equals, 255)
	c.Assert(s.Columns[7].MaxLength, quicktest.Equals, 10)
}

func TestParseSchema_QuotedNames(t *testing.T) {
	c := quicktest.New(t)
	ddl := `
{ TABLE "informix".orders row size = 10 number of columns = 2 index size = 0 }
{ unload file name=order00200.unl number of rows = 1 }
create table "informix"."orders"
  (
    "order_id" integer not null,
    "note" char(20)
  ) extent size 16 next size 16 lock mode row;
`
	catalog, err := ParseSchema(ddl)
	c.Assert(err, quicktest.IsNil)
	c.Assert(catalog["orders"].DataFile, quicktest.Equals, "order00200.unl")
	c.Assert(catalog["orders"].FieldNames(), quicktest.DeepEquals, []string{"order_id", "note"})
}

func TestParseSchema_SkipsBlockWithoutUnloadDirective(t *testing.T) {
	c := quicktest.New(t)
	ddl := `
{ TABLE "informix".missing_unl row size = 100 number of columns = 2 index size = 0 }
create table "informix".missing_unl
  (
    id serial not null,
    name varchar(50)
  ) extent size 16 next size 16 lock mode row;
` + twoTableDDL
	catalog, err := ParseSchema(ddl)
	c.Assert(err, quicktest.IsNil)
	_, ok := catalog.Lookup("missing_unl")
	c.Assert(ok, quicktest.IsFalse)
	c.Assert(catalog, quicktest.HasLen, 2)
}

func TestParseSchema_SkipsBlockWithoutCreateTable(t *testing.T) {
	c := quicktest.New(t)
	ddl := `
{ TABLE "informix".view_like row size = 100 number of columns = 2 index size = 0 }
{ unload file name = viewl00300.unl number of rows = 0 }
create view "informix".view_like as select * from customers;
` + twoTableDDL
	catalog, err := ParseSchema(ddl)
	c.Assert(err, quicktest.IsNil)
	c.Assert(catalog, quicktest.HasLen, 2)
}

func TestParseSchema_OnlyUnloadlessBlocksIsError(t *testing.T) {
	c := quicktest.New(t)
	ddl := `
{ TABLE "informix".missing_unl row size = 100 number of columns = 2 index size = 0 }
create table "informix".missing_unl
  (
    id serial not null,
    name varchar(50)
  ) extent size 16 next size 16 lock mode row;
`
	_, err := ParseSchema(ddl)
	var perr *ParseError
	c.Assert(errors.As(err, &perr), quicktest.IsTrue)
	c.Assert(err, quicktest.ErrorMatches, "parse schema: no valid tables found")
}

func TestParseSchema_NoTableBlocks(t *testing.T) {
	c := quicktest.New(t)
	_, err := ParseSchema("{ DATABASE empty delimiter | }\n")
	c.Assert(err, quicktest.ErrorMatches, "parse schema: no valid tables found")
}

func TestParseSchema_TableWithoutFieldsAborts(t *testing.T) {
	c := quicktest.New(t)
	ddl := twoTableDDL + `
{ TABLE "informix".weird row size = 100 number of columns = 1 index size = 0 }
{ unload file name = weird00400.unl number of rows = 0 }
create table "informix".weird
  (
    geom st_point
  ) extent size 16 next size 16 lock mode row;
`
	_, err := ParseSchema(ddl)
	var perr *ParseError
	c.Assert(errors.As(err, &perr), quicktest.IsTrue)
	c.Assert(perr.Table, quicktest.Equals, "weird")
	c.Assert(err, quicktest.ErrorMatches, "parse schema: table weird: no fields found")
}

func TestParseSchema_DuplicateFieldAborts(t *testing.T) {
	c := quicktest.New(t)
	ddl := `
{ TABLE "informix".dup row size = 20 number of columns = 2 index size = 0 }
{ unload file name = dup00500.unl number of rows = 0 }
create table "informix".dup
  (
    id serial not null,
    id integer
  ) extent size 16 next size 16 lock mode row;
`
	_, err := ParseSchema(ddl)
	var perr *ParseError
	c.Assert(errors.As(err, &perr), quicktest.IsTrue)
	c.Assert(err, quicktest.ErrorMatches, "parse schema: table dup: duplicate field id")
}

func TestParseSchema_Deterministic(t *testing.T) {
	c := quicktest.New(t)
	first, err := ParseSchema(twoTableDDL)
	c.Assert(err, quicktest.IsNil)
	for i := 0; i < 5; i++ {
		again, err := ParseSchema(twoTableDDL)
		c.Assert(err, quicktest.IsNil)
		for _, table := range first.Tables() {
			c.Assert(again[table].FieldNames(), quicktest.DeepEquals, first[table].FieldNames())
			c.Assert(again[table].DataFile, quicktest.Equals, first[table].DataFile)
		}
	}
}

func TestParseSchemaFile(t *testing.T) {
	c := quicktest.New(t)
	path := filepath.Join(t.TempDir(), "test_live.sql")
	c.Assert(os.WriteFile(path, []byte(twoTableDDL), 0o644), quicktest.IsNil)

	catalog, err := ParseSchemaFile(path)
	c.Assert(err, quicktest.IsNil)
	c.Assert(catalog, quicktest.HasLen, 2)

	_, err = ParseSchemaFile(filepath.Join(t.TempDir(), "missing.sql"))
	c.Assert(err, quicktest.ErrorMatches, "failed to read schema file: .*")
}

func TestCatalog_DataFileTables(t *testing.T) {
	c := quicktest.New(t)
	catalog, err := ParseSchema(twoTableDDL)
	c.Assert(err, quicktest.IsNil)
	c.Assert(catalog.DataFileTables(), quicktest.DeepEquals, map[string]string{
		"custo00100.unl": "customers",
		"emplo00101.unl": "employees",
	})
}
