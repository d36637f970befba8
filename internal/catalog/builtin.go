package catalog

import "inferd/pkg/types"

const tfjsModels = "https://storage.googleapis.com/tfjs-models/"

func meta(description, useCase string) map[string]any {
	return map[string]any{"description": description, "use_case": useCase}
}

// Builtin returns the pretrained model table shipped with the service.
func Builtin() []types.ModelConfig {
	warm := true
	return []types.ModelConfig{
		{
			ID: "universal-sentence-encoder", Name: "Universal Sentence Encoder", Version: "4.0.0",
			Type: types.TypeEmbedding, Source: "https://tfhub.dev/google/universal-sentence-encoder/4",
			InputShape: []int{512}, OutputShape: []int{512}, Preprocessor: "text-tokenizer", Warmup: &warm,
			Metadata: meta("Encodes text into high-dimensional vectors for semantic similarity", "semantic-search, text-similarity, clustering"),
		},
		{
			ID: "sentiment-analysis", Name: "Sentiment Analysis", Version: "1.0.0",
			Type: types.TypeClassification, Source: tfjsModels + "sentiment/model.json",
			InputShape: []int{100}, OutputShape: []int{2}, Labels: []string{"negative", "positive"},
			Preprocessor: "text-sequence",
			Metadata:     meta("Analyzes sentiment of text as positive or negative", "content-moderation, feedback-analysis"),
		},
		{
			ID: "toxic-comment-detection", Name: "Toxic Comment Detection", Version: "1.0.0",
			Type: types.TypeClassification, Source: tfjsModels + "toxic/model.json",
			InputShape: []int{200}, OutputShape: []int{6},
			Labels:       []string{"toxic", "severe_toxic", "obscene", "threat", "insult", "identity_hate"},
			Preprocessor: "text-sequence",
			Metadata:     meta("Detects toxic comments across multiple categories", "content-moderation, community-safety"),
		},
		{
			ID: "mobilenet-v2", Name: "MobileNet v2", Version: "2.0.0",
			Type: types.TypeClassification, Source: tfjsModels + "mobilenet_v2_1.0_224/model.json",
			InputShape: []int{224, 224, 3}, OutputShape: []int{1000}, Preprocessor: "image-resize-normalize",
			Metadata: meta("Lightweight image classification model", "image-analysis"),
		},
		{
			ID: "coco-ssd", Name: "COCO-SSD Object Detection", Version: "2.0.0",
			Type: types.TypeVision, Source: tfjsModels + "coco-ssd/model.json",
			InputShape: []int{640, 640, 3}, OutputShape: []int{100, 6},
			Metadata: meta("Real-time object detection", "image-analysis"),
		},
		{
			ID: "face-landmarks", Name: "Face Landmarks Detection", Version: "1.0.0",
			Type: types.TypeVision, Source: tfjsModels + "face-landmarks-detection/model.json",
			InputShape: []int{128, 128, 3}, OutputShape: []int{468, 3},
			Metadata: meta("Detects 468 facial landmarks in 3D", "image-analysis, ar-applications"),
		},
		{
			ID: "speech-commands", Name: "Speech Commands Recognition", Version: "1.0.0",
			Type: types.TypeClassification, Source: tfjsModels + "speech-commands/model.json",
			InputShape: []int{124 * 129}, OutputShape: []int{21}, SampleRate: 16000,
			Labels: []string{
				"silence", "up", "down", "left", "right", "go", "stop", "yes", "no",
				"on", "off", "one", "two", "three", "four", "five", "six", "seven",
				"eight", "nine", "zero",
			},
			Preprocessor: "audio-spectrogram",
			Metadata:     meta("Recognizes simple voice commands", "voice-control, smart-home, accessibility"),
		},
		{
			ID: "word2vec-glove", Name: "GloVe Word Embeddings", Version: "1.0.0",
			Type: types.TypeEmbedding, Source: tfjsModels + "word2vec/glove.6B.50d.json",
			InputShape: []int{1}, OutputShape: []int{50},
			Metadata: meta("Pre-trained word embeddings from GloVe", "semantic-search"),
		},
		{
			ID: "posenet", Name: "PoseNet", Version: "2.0.0",
			Type: types.TypeVision, Source: tfjsModels + "posenet/model.json",
			InputShape: []int{513, 513, 3}, OutputShape: []int{17, 3},
			Metadata: meta("Human pose estimation in real-time", "ar-applications"),
		},
		{
			ID: "handpose", Name: "MediaPipe HandPose", Version: "1.0.0",
			Type: types.TypeVision, Source: tfjsModels + "handpose/model.json",
			InputShape: []int{256, 256, 3}, OutputShape: []int{21, 3},
			Metadata: meta("Detects hand landmarks and gestures", "ar-applications"),
		},
		{
			ID: "style-transfer", Name: "Arbitrary Style Transfer", Version: "1.0.0",
			Type: types.TypeVision, Source: tfjsModels + "style-transfer/model.json",
			InputShape: []int{256, 256, 3}, OutputShape: []int{256, 256, 3},
			Metadata: meta("Transfers artistic style between images", "creative-tools"),
		},
		{
			ID: "gpt2-small", Name: "GPT-2 Small", Version: "1.0.0",
			Type: "nlp", Source: tfjsModels + "gpt2/small/model.json",
			InputShape: []int{1024}, OutputShape: []int{50257},
			Metadata: meta("Small version of GPT-2 for text generation", "creative-tools"),
		},
	}
}
