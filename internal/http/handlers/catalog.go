package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/ekonzims-be/internal/catalog"
	"github.com/hongminglow/ekonzims-be/internal/http/respond"
)

func listProducts(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, "ok", catalog.Products())
}

func getProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := catalog.ProductByID(chi.URLParam(r, "id"))
	if !ok {
		respond.Error(w, http.StatusNotFound, "product not found")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", p)
}

func listServices(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, "ok", catalog.Services())
}

func getService(w http.ResponseWriter, r *http.Request) {
	s, ok := catalog.ServiceByID(chi.URLParam(r, "id"))
	if !ok {
		respond.Error(w, http.StatusNotFound, "service not found")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", s)
}
