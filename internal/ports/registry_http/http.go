package registry_http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

// NewHandler exposes reg on mbean.ObjectsPath and mbean.AttributePath.
func NewHandler(reg domain.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+mbean.ObjectsPath, func(w http.ResponseWriter, r *http.Request) {
		objects, err := describe(r, reg)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, objects)
	})
	mux.HandleFunc("GET "+mbean.AttributePath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		object, err := mbean.ParseObjectName(q.Get("object"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		name := q.Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, errors.New("missing attribute name"))
			return
		}

		v, err := reg.ReadAttribute(r.Context(), object, name)
		switch {
		case errors.Is(err, mbean.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case err != nil:
			writeError(w, http.StatusBadGateway, err)
		default:
			writeJSON(w, http.StatusOK, mbean.AttributeReading{Value: v})
		}
	})
	return mux
}

func describe(r *http.Request, reg domain.Registry) ([]mbean.ManagedObject, error) {
	ctx := r.Context()
	names, err := reg.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	objects := make([]mbean.ManagedObject, 0, len(names))
	for _, name := range names {
		attrs, err := reg.ListAttributes(ctx, name)
		if errors.Is(err, mbean.ErrNotFound) {
			continue // unregistered while listing
		}
		if err != nil {
			return nil, err
		}
		if attrs == nil {
			attrs = []mbean.AttributeDescriptor{}
		}
		objects = append(objects, mbean.ManagedObject{Name: name, Attributes: attrs})
	}
	return objects, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		log.Printf("Registry: failed to encode response: %v", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, mbean.ProtocolError{Error: err.Error()})
}
