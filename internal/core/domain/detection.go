package domain

// Detection is the result returned by the emotion classifier.
type Detection struct {
	Emotion       Emotion
	Confidence    float64
	Probabilities map[string]float64
}

// NoFaceDetection is reported when the classifier finds nothing to classify.
func NoFaceDetection() Detection {
	return Detection{Emotion: Neutral, Confidence: 0, Probabilities: map[string]float64{string(Neutral): 1}}
}
