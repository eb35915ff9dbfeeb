package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

// OpenAPI accumulates a document as routes are described. Named structs
// become component schemas referenced by $ref.
type OpenAPI struct {
	mu      sync.RWMutex
	spec    *openapi3.T
	schemas map[reflect.Type]string
}

func New(title, version string) *OpenAPI {
	return &OpenAPI{
		spec: &openapi3.T{
			OpenAPI:    "3.0.3",
			Info:       &openapi3.Info{Title: title, Version: version},
			Paths:      openapi3.NewPaths(),
			Components: &openapi3.Components{Schemas: make(openapi3.Schemas)},
		},
		schemas: make(map[reflect.Type]string),
	}
}

func (o *OpenAPI) Description(desc string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Info.Description = desc
	return o
}

func (o *OpenAPI) Server(url, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Servers = append(o.spec.Servers, &openapi3.Server{URL: url, Description: description})
	return o
}

func (o *OpenAPI) Tag(name, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Tags = append(o.spec.Tags, &openapi3.Tag{Name: name, Description: description})
	return o
}

func (o *OpenAPI) BearerAuth(name, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.spec.Components.SecuritySchemes == nil {
		o.spec.Components.SecuritySchemes = make(openapi3.SecuritySchemes)
	}
	o.spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  description,
		},
	}
	return o
}

func (o *OpenAPI) Spec() *openapi3.T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.spec
}

func (o *OpenAPI) JSON() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return json.MarshalIndent(o.spec, "", "  ")
}

func (o *OpenAPI) YAML() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	intermediate, err := o.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (o *OpenAPI) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := o.JSON()
		if err != nil {
			return err
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (o *OpenAPI) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := o.YAML()
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

// Document starts describing method+path. Echo style ":param" segments are
// converted and declared as path parameters.
func (o *OpenAPI) Document(method, path string) *RouteBuilder {
	rb := &RouteBuilder{
		openapi:   o,
		method:    strings.ToUpper(method),
		path:      echoPathToOpenAPI(path),
		operation: &openapi3.Operation{Responses: openapi3.NewResponses()},
	}
	for _, part := range strings.Split(path, "/") {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			rb.PathParam(name, "")
		}
	}
	return rb
}

func (o *OpenAPI) addOperation(method, path string, op *openapi3.Operation) {
	o.mu.Lock()
	defer o.mu.Unlock()

	item := o.spec.Paths.Find(path)
	if item == nil {
		item = &openapi3.PathItem{}
		o.spec.Paths.Set(path, item)
	}
	item.SetOperation(method, op)
}

func echoPathToOpenAPI(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			parts[i] = "{" + name + "}"
		}
	}
	return strings.Join(parts, "/")
}

func (o *OpenAPI) schemaFor(example any) *openapi3.SchemaRef {
	o.mu.Lock()
	defer o.mu.Unlock()

	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return o.schemaFromType(reflect.TypeOf(example), map[reflect.Type]bool{})
}

func (o *OpenAPI) schemaFromType(t reflect.Type, visiting map[reflect.Type]bool) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		ref := o.schemaFromType(t.Elem(), visiting)
		if ref.Ref != "" {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{AllOf: openapi3.SchemaRefs{ref}, Nullable: true}}
		}
		ref.Value.Nullable = true
		return ref
	}

	if t.PkgPath() == "time" && t.Name() == "Time" {
		return openapi3.NewDateTimeSchema().NewRef()
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema().NewRef()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return openapi3.NewIntegerSchema().NewRef()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().WithMin(0).NewRef()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema().NewRef()
	case reflect.Bool:
		return openapi3.NewBoolSchema().NewRef()
	case reflect.Slice, reflect.Array:
		schema := openapi3.NewArraySchema()
		schema.Items = o.schemaFromType(t.Elem(), visiting)
		return schema.NewRef()
	case reflect.Map:
		schema := openapi3.NewObjectSchema()
		schema.AdditionalProperties = openapi3.AdditionalProperties{Schema: o.schemaFromType(t.Elem(), visiting)}
		return schema.NewRef()
	case reflect.Struct:
		return o.structRef(t, visiting)
	default:
		return openapi3.NewObjectSchema().NewRef()
	}
}

// structRef registers named structs as components and inlines anonymous
// ones. Component refs carry the registered schema as their Value so the
// document validates and recursive types point back at their component.
func (o *OpenAPI) structRef(t reflect.Type, visiting map[reflect.Type]bool) *openapi3.SchemaRef {
	if name, ok := o.schemas[t]; ok {
		return openapi3.NewSchemaRef("#/components/schemas/"+name, o.spec.Components.Schemas[name].Value)
	}
	if visiting[t] {
		return openapi3.NewObjectSchema().NewRef()
	}
	visiting[t] = true
	defer delete(visiting, t)

	schema := openapi3.NewObjectSchema()
	var name string
	if t.Name() != "" {
		name = o.uniqueName(t.Name())
		o.schemas[t] = name
		o.spec.Components.Schemas[name] = schema.NewRef()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		prop, opts, _ := strings.Cut(tag, ",")
		if prop == "" {
			prop = field.Name
		}

		ref := o.schemaFromType(field.Type, visiting)
		if doc := field.Tag.Get("doc"); doc != "" && ref.Ref == "" && ref.Value != nil {
			ref.Value.Description = doc
		}
		schema.WithPropertyRef(prop, ref)
		if !strings.Contains(opts, "omitempty") && field.Type.Kind() != reflect.Pointer {
			schema.Required = append(schema.Required, prop)
		}
	}

	if name == "" {
		return schema.NewRef()
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, schema)
}

func (o *OpenAPI) uniqueName(base string) string {
	name := base
	for i := 2; ; i++ {
		if _, taken := o.spec.Components.Schemas[name]; !taken {
			return name
		}
		name = base + strconv.Itoa(i)
	}
}
