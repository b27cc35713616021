// Package search provides the multimodal query engine: embedding, fusion,
// and similarity ranking over the record store.
package search

// Fuse combines optional text and image embeddings into one query vector.
// Both present: element-wise mean, equal weighting. One present: that vector
// unchanged. Neither: nil.
func Fuse(text, image []float32) []float32 {
	switch {
	case len(text) > 0 && len(image) > 0:
		fused := make([]float32, len(text))
		for i := range text {
			fused[i] = (text[i] + image[i]) / 2
		}
		return fused
	case len(text) > 0:
		return text
	case len(image) > 0:
		return image
	default:
		return nil
	}
}
