// SPDX-License-Identifier: MIT
package main

import "github.com/skaphos/topickeeper/cmd/topickeeper"

var execute = topickeeper.Execute

func main() {
	execute()
}
