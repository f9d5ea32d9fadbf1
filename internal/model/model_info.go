package model

// ModelInfo describes the regression model behind the prediction service.
// It only annotates insight text.
type ModelInfo struct {
	ModelType string       `json:"model_type,omitempty" yaml:"model_type,omitempty"`
	Metrics   ModelMetrics `json:"metrics" yaml:"metrics"`
	Dataset   DatasetInfo  `json:"dataset" yaml:"dataset"`
}

// ModelMetrics holds the evaluation metrics of the trained model.
type ModelMetrics struct {
	R2Score          float64 `json:"r2_score" yaml:"r2_score"`
	MeanSquaredError float64 `json:"mean_squared_error" yaml:"mean_squared_error"`
}

// DatasetInfo holds the train/test split sizes.
type DatasetInfo struct {
	TrainSamples int `json:"train_samples" yaml:"train_samples"`
	TestSamples  int `json:"test_samples" yaml:"test_samples"`
}
