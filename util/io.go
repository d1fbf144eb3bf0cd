package util

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

// Creates all parent directories of file.
func EnsureParentDir(file string) error {
	dir := filepath.Dir(file)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func WriteJSONToFile[T any](value T, file string) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode json")
	}
	if err := EnsureParentDir(file); err != nil {
		return err
	}
	return os.WriteFile(file, data, 0o644)
}

// Writes header and rows as delimiter separated values.
func WriteCSVToFile(file string, delimiter rune, header []string, rows [][]string) error {
	if err := EnsureParentDir(file); err != nil {
		return err
	}
	f, err := os.Create(file)
	if err != nil {
		return errors.Wrapf(err, "create %s", file)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	writer.Comma = delimiter
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

// Reads all rows of a delimiter separated file into structs of type T.
//
// Struct fields are matched to columns by their "csv" tag, untagged fields
// and unknown columns are ignored. Rows with a wrong field count are skipped.
func ReadCSVFromFile[T any](filename string, delimiter rune) ([]T, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = delimiter
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", filename)
	}
	name_row_mapping := NewDict[string, int](len(header))
	for i, name := range header {
		name_row_mapping[name] = i
	}

	var val T
	typ := reflect.TypeOf(val)
	if typ.Kind() != reflect.Struct {
		return nil, errors.Errorf("csv target must be a struct, got %v", typ.Kind())
	}
	num_field := typ.NumField()
	fields := NewList[Triple[int, int, reflect.Kind]](num_field)
	for i := 0; i < num_field; i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("csv")
		if tag == "" {
			continue
		}
		if !name_row_mapping.ContainsKey(tag) {
			continue
		}
		row := name_row_mapping[tag]
		switch field.Type.Kind() {
		case reflect.Bool:
			fields.Add(MakeTriple(i, row, reflect.Bool))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fields.Add(MakeTriple(i, row, reflect.Int))
		case reflect.Float32, reflect.Float64:
			fields.Add(MakeTriple(i, row, reflect.Float64))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fields.Add(MakeTriple(i, row, reflect.Uint))
		case reflect.String:
			fields.Add(MakeTriple(i, row, reflect.String))
		}
	}

	values := NewList[T](100)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parse_err *csv.ParseError
			if errors.As(err, &parse_err) && errors.Is(parse_err.Err, csv.ErrFieldCount) {
				continue
			}
			return nil, errors.Wrapf(err, "read %s", filename)
		}
		t := reflect.New(typ).Elem()
		for _, field := range fields {
			value := record[field.B]
			if value == "" {
				continue
			}
			f := t.Field(field.A)
			switch field.C {
			case reflect.Bool:
				num, _ := strconv.ParseBool(value)
				f.SetBool(num)
			case reflect.Int:
				num, _ := strconv.ParseInt(value, 10, 64)
				f.SetInt(num)
			case reflect.Uint:
				num, _ := strconv.ParseUint(value, 10, 64)
				f.SetUint(num)
			case reflect.Float64:
				num, _ := strconv.ParseFloat(value, 64)
				f.SetFloat(num)
			case reflect.String:
				f.SetString(value)
			}
		}
		values.Add(t.Interface().(T))
	}
	return values, nil
}
