package render

// ErrorTitle heads every error widget.
const ErrorTitle = "🚆 Traewelling"

// ErrorWidget renders message and, when err is not nil, its text below.
func ErrorWidget(message string, err error) *Widget {
	w := NewWidget()
	w.AddText(ErrorTitle, StyleTitle)
	w.AddText(message, StyleSubtitle)
	if err != nil {
		w.AddText(err.Error(), StyleSubtitle)
	}
	return w
}
