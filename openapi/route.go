package openapi

import (
	"net/http"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

type RouteBuilder struct {
	openapi   *OpenAPI
	method    string
	path      string
	operation *openapi3.Operation
}

func (rb *RouteBuilder) Summary(summary string) *RouteBuilder {
	rb.operation.Summary = summary
	return rb
}

func (rb *RouteBuilder) Description(description string) *RouteBuilder {
	rb.operation.Description = description
	return rb
}

func (rb *RouteBuilder) OperationID(id string) *RouteBuilder {
	rb.operation.OperationID = id
	return rb
}

func (rb *RouteBuilder) Tags(tags ...string) *RouteBuilder {
	rb.operation.Tags = append(rb.operation.Tags, tags...)
	return rb
}

func (rb *RouteBuilder) PathParam(name, description string) *ParamBuilder {
	param := rb.param(name, "path")
	param.Required = true
	if description != "" {
		param.Description = description
	}
	return &ParamBuilder{route: rb, param: param}
}

func (rb *RouteBuilder) QueryParam(name, description string) *ParamBuilder {
	param := rb.param(name, "query")
	param.Description = description
	return &ParamBuilder{route: rb, param: param}
}

func (rb *RouteBuilder) param(name, in string) *openapi3.Parameter {
	for _, p := range rb.operation.Parameters {
		if p.Value != nil && p.Value.Name == name && p.Value.In == in {
			return p.Value
		}
	}

	param := &openapi3.Parameter{
		Name:   name,
		In:     in,
		Schema: openapi3.NewStringSchema().NewRef(),
	}
	rb.operation.Parameters = append(rb.operation.Parameters, &openapi3.ParameterRef{Value: param})
	return param
}

func (rb *RouteBuilder) Body(example any, description string) *RouteBuilder {
	rb.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithJSONSchemaRef(rb.openapi.schemaFor(example)),
	}
	return rb
}

func (rb *RouteBuilder) Response(statusCode int, example any, description string) *RouteBuilder {
	resp := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		resp.Content = openapi3.NewContentWithJSONSchemaRef(rb.openapi.schemaFor(example))
	}
	rb.operation.Responses.Set(strconv.Itoa(statusCode), &openapi3.ResponseRef{Value: resp})
	return rb
}

// ResponseFile documents a non-JSON body, such as a CSV download, with the
// headers that accompany it.
func (rb *RouteBuilder) ResponseFile(statusCode int, contentType, description string, headers map[string]string) *RouteBuilder {
	schema := openapi3.NewStringSchema()
	schema.Format = "binary"

	resp := openapi3.NewResponse().WithDescription(description)
	resp.Content = openapi3.Content{contentType: openapi3.NewMediaType().WithSchema(schema)}
	if len(headers) > 0 {
		resp.Headers = make(openapi3.Headers, len(headers))
		for name, desc := range headers {
			resp.Headers[name] = &openapi3.HeaderRef{Value: &openapi3.Header{Parameter: openapi3.Parameter{
				Description: desc,
				Schema:      openapi3.NewStringSchema().NewRef(),
			}}}
		}
	}
	rb.operation.Responses.Set(strconv.Itoa(statusCode), &openapi3.ResponseRef{Value: resp})
	return rb
}

// Errors documents the shared error envelope for each status.
func (rb *RouteBuilder) Errors(example any, statusCodes ...int) *RouteBuilder {
	for _, code := range statusCodes {
		rb.Response(code, example, http.StatusText(code))
	}
	return rb
}

func (rb *RouteBuilder) Security(schemes ...string) *RouteBuilder {
	if rb.operation.Security == nil {
		rb.operation.Security = openapi3.NewSecurityRequirements()
	}
	for _, scheme := range schemes {
		rb.operation.Security.With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	}
	return rb
}

func (rb *RouteBuilder) NoSecurity() *RouteBuilder {
	rb.operation.Security = openapi3.NewSecurityRequirements()
	return rb
}

func (rb *RouteBuilder) Build() {
	rb.openapi.addOperation(rb.method, rb.path, rb.operation)
}

type ParamBuilder struct {
	route *RouteBuilder
	param *openapi3.Parameter
}

func (pb *ParamBuilder) Required() *ParamBuilder {
	pb.param.Required = true
	return pb
}

func (pb *ParamBuilder) Type(t string) *ParamBuilder {
	pb.param.Schema.Value.Type = &openapi3.Types{t}
	return pb
}

func (pb *ParamBuilder) Format(format string) *ParamBuilder {
	pb.param.Schema.Value.Format = format
	return pb
}

func (pb *ParamBuilder) Enum(values ...string) *ParamBuilder {
	for _, v := range values {
		pb.param.Schema.Value.Enum = append(pb.param.Schema.Value.Enum, v)
	}
	return pb
}

func (pb *ParamBuilder) Default(value any) *ParamBuilder {
	pb.param.Schema.Value.Default = value
	return pb
}

func (pb *ParamBuilder) QueryParam(name, description string) *ParamBuilder {
	return pb.route.QueryParam(name, description)
}

func (pb *ParamBuilder) Done() *RouteBuilder {
	return pb.route
}
