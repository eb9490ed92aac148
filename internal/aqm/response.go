package aqm

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gertd/go-pluralize"
)

var pluralizer = pluralize.NewClient()

// Generic messages for faults whose detail must not reach the caller.
const (
	MsgInternalError    = "Internal server error"
	MsgNotFound         = "Not found"
	MsgMethodNotAllowed = "Method not allowed"
	MsgMalformedPayload = "Malformed JSON payload"
	MsgPayloadTooLarge  = "Payload too large"
	MsgUnsupportedMedia = "Unsupported media type"
)

// ErrorBody is the single error shape returned by every endpoint.
type ErrorBody struct {
	Error string `json:"error"`
}

// MessageBody acknowledges mutations that do not echo a document.
type MessageBody struct {
	Message string `json:"message"`
}

// Respond writes data as a JSON document with the given status code.
func Respond(w http.ResponseWriter, code int, data any) {
	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes {"error": message}.
func RespondError(w http.ResponseWriter, code int, message string) {
	Respond(w, code, ErrorBody{Error: message})
}

// RespondMessage writes {"message": message}.
func RespondMessage(w http.ResponseWriter, code int, message string) {
	Respond(w, code, MessageBody{Message: message})
}

// RespondInternalError writes the generic 500 body.
func RespondInternalError(w http.ResponseWriter) {
	RespondError(w, http.StatusInternalServerError, MsgInternalError)
}

// Pluralize converts a singular resource type into its plural form.
func Pluralize(singular string) string {
	return pluralizer.Plural(singular)
}

// Singularize converts a plural resource type into its singular form.
func Singularize(plural string) string {
	return pluralizer.Singular(plural)
}

// CollectionPath returns the REST collection path for a resource name,
// e.g. "customer" -> "/customers".
func CollectionPath(resource string) string {
	return "/" + Pluralize(strings.ToLower(resource))
}

// ItemPath returns the path of a single resource in its collection.
func ItemPath(resource, id string) string {
	return CollectionPath(resource) + "/" + id
}

// ResourceMessage formats human messages such as "Customer not found".
func ResourceMessage(resource, outcome string) string {
	name := Singularize(strings.ToLower(resource))
	if name == "" {
		return outcome
	}
	return strings.ToUpper(name[:1]) + name[1:] + " " + outcome
}
