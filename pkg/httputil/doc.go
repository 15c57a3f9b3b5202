// Package httputil provides JSON request/response helpers and the generic
// HTTP middleware chain (request ids, access logging, panic recovery, CORS).
//
//	var req loginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	result, err := svc.Login(r.Context(), req.Identifier, req.Password)
//	if err != nil {
//		httputil.WriteAppError(w, r, err)
//		return
//	}
//	httputil.WriteSuccess(w, result)
package httputil
