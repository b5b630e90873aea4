package handler

import "net/http"

// SignIn implements POST /v1/session. It starts the periodic cleanup that
// moves the user's ended trips into the past partition.
func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	s.sessions.SignIn(userID)
	w.WriteHeader(http.StatusNoContent)
}

// SignOut implements DELETE /v1/session.
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	s.sessions.SignOut(userID)
	w.WriteHeader(http.StatusNoContent)
}
