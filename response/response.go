package response

// Response is the JSON envelope returned by every endpoint.
type Response struct {
	Code int         `json:"code"`
	Data interface{} `json:"data,omitempty"`
	Msg  string      `json:"msg,omitempty"`
}

func Success(data interface{}) Response {
	return Response{
		Code: 200,
		Data: data,
	}
}

func Error(code int, msg string) Response {
	return Response{
		Code: code,
		Msg:  msg,
	}
}
