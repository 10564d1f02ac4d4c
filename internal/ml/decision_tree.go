package ml

import (
	"fmt"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// Tree sizing limits. Traversal is bounded by MaxTreeDepth so a malformed
// tree can never stall the control loop.
const (
	MaxTreeDepth = 8
	MaxTreeNodes = 127
)

// TreeNode is one node of the flat, index-addressed decision tree.
// A node with both child indices zero is a leaf and Value is its prediction.
type TreeNode struct {
	FeatureIndex models.FeatureIndex
	Threshold    float64
	LeftChild    int
	RightChild   int
	Value        float64
}

// DecisionTree is a small fixed-depth binary tree over a feature vector.
// Nodes live in a flat array addressed by 1-based index; index 0 is the
// sentinel for "no child". Every dereference is bounds-checked.
type DecisionTree struct {
	nodes     [MaxTreeNodes]TreeNode
	nodeCount int
	rootIndex int
}

// NewDecisionTree creates an empty tree with the built-in default loaded.
func NewDecisionTree() *DecisionTree {
	t := &DecisionTree{rootIndex: 1}
	t.LoadDefaultTree()
	return t
}

// NewEmptyDecisionTree creates a tree with no nodes, for programmatic builds.
func NewEmptyDecisionTree() *DecisionTree {
	return &DecisionTree{rootIndex: 1}
}

// AddNode installs a node at a caller-assigned 1-based index. Index 0 is
// reserved as the "absent child" sentinel.
func (t *DecisionTree) AddNode(index int, feature models.FeatureIndex, threshold float64, left, right int, value float64) error {
	if index <= 0 || index >= MaxTreeNodes {
		return fmt.Errorf("node index %d out of range [1,%d)", index, MaxTreeNodes)
	}
	if left < 0 || left >= MaxTreeNodes || right < 0 || right >= MaxTreeNodes {
		return fmt.Errorf("child index out of range for node %d", index)
	}

	t.nodes[index] = TreeNode{
		FeatureIndex: feature,
		Threshold:    threshold,
		LeftChild:    left,
		RightChild:   right,
		Value:        value,
	}

	if index > t.nodeCount {
		t.nodeCount = index
	}
	return nil
}

// SetRoot sets the root node index.
func (t *DecisionTree) SetRoot(index int) {
	t.rootIndex = index
}

// NodeCount returns the highest installed node index.
func (t *DecisionTree) NodeCount() int {
	return t.nodeCount
}

// Predict evaluates the tree over a full feature vector and returns the leaf
// value reached. An empty or malformed tree returns the neutral default 0.
func (t *DecisionTree) Predict(features [models.FeatureCount]float64) float64 {
	if t.nodeCount == 0 || t.rootIndex == 0 {
		return 0
	}

	index := t.rootIndex
	for depth := 0; depth <= MaxTreeDepth; depth++ {
		if index <= 0 || index > t.nodeCount {
			return 0
		}

		node := &t.nodes[index]
		if node.LeftChild == 0 && node.RightChild == 0 {
			return node.Value
		}

		if node.FeatureIndex < 0 || int(node.FeatureIndex) >= models.FeatureCount {
			return 0
		}

		if features[node.FeatureIndex] <= node.Threshold {
			index = node.LeftChild
		} else {
			index = node.RightChild
		}
	}

	// Depth bound exceeded: the tree is malformed or cyclic.
	return 0
}

// PredictScore evaluates the tree from a single combined feature score,
// filling the remaining features with neutral defaults. This is the path
// used when a full feature vector is not available.
func (t *DecisionTree) PredictScore(featureScore float64) float64 {
	var features [models.FeatureCount]float64
	features[models.FeatureMoisture] = featureScore
	features[models.FeatureTemperature] = 0.5
	features[models.FeatureHumidity] = 0.5
	features[models.FeatureLight] = 0.5
	features[models.FeatureTime] = 0.5
	features[models.FeaturePlantType] = 0.0
	features[models.FeatureGrowthStage] = 0.4

	return t.Predict(features)
}

// LoadDefaultTree installs the built-in rule-based tree. It provides a
// baseline decision surface when no trained model has been loaded.
func (t *DecisionTree) LoadDefaultTree() {
	// Root: moisture split
	t.AddNode(1, models.FeatureMoisture, 0.6, 2, 3, 0)

	// Low moisture branch: temperature split
	t.AddNode(2, models.FeatureTemperature, 0.7, 4, 5, 0)

	// High moisture branch: time-since-watering split
	t.AddNode(3, models.FeatureTime, 0.5, 6, 7, 0)

	// Leaves
	t.AddNode(4, 0, 0, 0, 0, 0.8) // low moisture, moderate temp
	t.AddNode(5, 0, 0, 0, 0, 0.6) // low moisture, extreme temp
	t.AddNode(6, 0, 0, 0, 0, 0.3) // high moisture, recently watered
	t.AddNode(7, 0, 0, 0, 0, 0.0) // high moisture, long since watered

	t.nodeCount = 7
	t.rootIndex = 1
}
